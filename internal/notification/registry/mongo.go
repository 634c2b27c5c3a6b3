// internal/notification/registry/mongo.go
package registry

import (
	"context"
	"errors"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// userCollection is the part of *mongo.Collection the registry uses.
type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
}

// MongoRegistry stores users as documents keyed by uid.
type MongoRegistry struct {
	users            userCollection
	collection       string
	preferencesField string
	endpointsField   string
}

// MongoOptions names the collection and the user document fields.
type MongoOptions struct {
	Collection       string
	PreferencesField string
	EndpointsField   string
}

func NewMongoRegistry(db *mongo.Database, opts MongoOptions) *MongoRegistry {
	return newMongoRegistry(db.Collection(opts.Collection), opts)
}

func newMongoRegistry(users userCollection, opts MongoOptions) *MongoRegistry {
	return &MongoRegistry{
		users:            users,
		collection:       opts.Collection,
		preferencesField: opts.PreferencesField,
		endpointsField:   opts.EndpointsField,
	}
}

func (r *MongoRegistry) Load(ctx context.Context, uid string) (*models.User, error) {
	raw, err := r.users.FindOne(ctx, idFilter(uid)).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, apperrors.NewStoreUnavailableError("load user", err).WithMetadata("uid", uid)
	}

	user := &models.User{UID: uid}

	if v, err := raw.LookupErr("email"); err == nil {
		user.Email, _ = v.StringValueOK()
	}

	if v, err := raw.LookupErr(r.preferencesField); err == nil {
		doc, ok := v.DocumentOK()
		if !ok {
			return nil, apperrors.NewMalformedDocumentError(r.collection, uid,
				errors.New(r.preferencesField+" is not a document"))
		}
		elems, err := doc.Elements()
		if err != nil {
			return nil, apperrors.NewMalformedDocumentError(r.collection, uid, err)
		}
		user.NotificationPreferences = make(map[string]interface{}, len(elems))
		for _, elem := range elems {
			value := elem.Value()
			if b, ok := value.BooleanOK(); ok {
				user.NotificationPreferences[elem.Key()] = b
				continue
			}
			user.NotificationPreferences[elem.Key()] = value.String()
		}
	}

	if v, err := raw.LookupErr(r.endpointsField); err == nil {
		arr, ok := v.ArrayOK()
		if !ok {
			return nil, apperrors.NewMalformedDocumentError(r.collection, uid,
				errors.New(r.endpointsField+" is not an array"))
		}
		values, err := arr.Values()
		if err != nil {
			return nil, apperrors.NewMalformedDocumentError(r.collection, uid, err)
		}
		for _, value := range values {
			if s, ok := value.StringValueOK(); ok && s != "" {
				user.DeliveryEndpoints = append(user.DeliveryEndpoints, s)
			}
		}
	}

	return user, nil
}

// PruneEndpoints issues a $pullAll so only the listed endpoints are removed.
func (r *MongoRegistry) PruneEndpoints(ctx context.Context, uid string, invalid []string) error {
	if len(invalid) == 0 {
		return nil
	}
	_, err := r.users.UpdateOne(ctx,
		idFilter(uid),
		bson.M{"$pullAll": bson.M{r.endpointsField: invalid}},
	)
	if err != nil {
		return apperrors.NewEndpointPruneFailedError(uid, err)
	}
	return nil
}

// idFilter matches a user by uid. Change events carry ObjectID keys as hex
// strings, so a hex uid also matches the equivalent ObjectID.
func idFilter(uid string) bson.M {
	if oid, err := bson.ObjectIDFromHex(uid); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{uid, oid}}}
	}
	return bson.M{"_id": uid}
}
